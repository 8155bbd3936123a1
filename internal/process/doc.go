// Package process runs external programs as byte-stream filters.
//
// A Process owns one subprocess: data is written to its stdin and read back
// from its stdout, and stderr is parsed line by line into structured logs.
// Shutdown is input driven: CloseInput signals end of stream, the caller
// reads stdout to EOF, and Wait reaps the process.
//
//	p := process.NewProcess("scaler", "ffmpeg -f rawvideo ... pipe:1", logger)
//	p.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
//	if err := p.Start(); err != nil { ... }
//	go p.Write(input)
//	io.ReadFull(p, output)
//	p.CloseInput()
//	io.Copy(dst, p)
//	exitCode, err := p.Wait()
package process
