// File: internal/scripts/compression.go
package scripts

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised on every remote request.
const acceptEncoding = "br, gzip"

var brotliReaderPool = sync.Pool{
	New: func() interface{} {
		return brotli.NewReader(nil)
	},
}

// decodedBody closes the decoder chain and the original body together.
type decodedBody struct {
	io.Reader
	closers []func() error
}

func (d *decodedBody) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}

// decompress wraps resp.Body so that reads return the decoded payload.
// Encodings are listed in the order they were applied and undone in reverse.
// On error the body may be partially consumed and must be discarded.
func decompress(resp *http.Response) error {
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}
	body := &decodedBody{Reader: resp.Body, closers: []func() error{resp.Body.Close}}

	var layers []string
	for _, v := range encodings {
		layers = append(layers, strings.Split(v, ",")...)
	}
	for i := len(layers) - 1; i >= 0; i-- {
		switch enc := strings.ToLower(strings.TrimSpace(layers[i])); enc {
		case "", "identity":
		case "gzip":
			zr, err := gzip.NewReader(body.Reader)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			body.Reader = zr
			body.closers = append(body.closers, zr.Close)
		case "br":
			br := brotliReaderPool.Get().(*brotli.Reader)
			if err := br.Reset(body.Reader); err != nil {
				brotliReaderPool.Put(br)
				return fmt.Errorf("brotli initialization error: %w", err)
			}
			body.Reader = br
			body.closers = append(body.closers, func() error {
				_ = br.Reset(strings.NewReader(""))
				brotliReaderPool.Put(br)
				return nil
			})
		default:
			return fmt.Errorf("unsupported Content-Encoding layer: %s", enc)
		}
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
