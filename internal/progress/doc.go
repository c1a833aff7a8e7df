// Package progress prints a run's events to the console.
//
// Reporter implements downloader.Observer. Every event becomes one
// [gulp]-prefixed line; writes are serialized so lines from concurrent
// transfers never interleave.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    Output:       os.Stderr,
//	    TotalTargets: len(targets),
//	})
//
//	reporter.Start() // optional periodic status line
//	defer reporter.Stop()
//
// # Output Format
//
//	[gulp] using existing path temp
//	[gulp] downloading https://example.com/file.tar.gz
//	[gulp] downloaded https://example.com/file.tar.gz at temp/file.tar.gz (2.50 MB)
//	[gulp] temp/other.bin exists already, not downloading
//	[gulp] dropped https://example.com/gone.bin: status 404
//	[gulp] Progress: 12/40 done | 16 in-flight | 310.00 MB written | Speed: 41.20 MB/s
//	[gulp] finished in 8.4s | 38 completed | 1 skipped | 0 failed | 1 dropped | 1.20 GB written
package progress
