package stream

import (
	"bufio"
	"io"
	"strings"
)

// lineReader yields complete text lines from a source of arbitrarily sized
// byte chunks. A line may straddle any number of network reads; only a
// line-feed completes it. A final line without a terminator is a truncated
// frame and is discarded.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next complete line with its line ending stripped.
// io.EOF means the source is exhausted; any other error is a transport
// failure. Partial data buffered before either is dropped.
func (l *lineReader) next() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
