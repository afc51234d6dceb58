package llm

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

var (
	sseDataPrefix = []byte("data:")
	sseDone       = []byte("[DONE]")
)

// decodeSSE reads server-sent events from body and hands each data payload to
// decode. It stops on the [DONE] sentinel, on a chunk flagged Done, on EOF or
// when ctx is cancelled. Fragments decode rejects are skipped. The channel
// always ends with a Done chunk unless ctx was cancelled. cancel, if non-nil,
// runs when the goroutine exits.
func decodeSSE(ctx context.Context, body io.ReadCloser, cancel context.CancelFunc, decode func(data []byte) (*StreamChunk, error)) <-chan StreamChunk {
	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		defer body.Close()
		if cancel != nil {
			defer cancel()
		}

		send := func(c StreamChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Bytes()
			if len(line) == 0 || line[0] == ':' || !bytes.HasPrefix(line, sseDataPrefix) {
				continue
			}
			data := bytes.TrimSpace(bytes.TrimPrefix(line, sseDataPrefix))
			if bytes.Equal(data, sseDone) {
				send(StreamChunk{Done: true})
				return
			}

			chunk, err := decode(data)
			if err != nil || chunk == nil {
				continue
			}
			if !send(*chunk) {
				return
			}
			if chunk.Done {
				return
			}
		}
		send(StreamChunk{Done: true})
	}()
	return ch
}
