// Package httpsource implements inputsource.InputSource over HTTP,
// using range requests for seeking where the server advertises support,
// grounded on original_source/Input/HTTPInputSource.cpp.
package httpsource

import (
	"fmt"
	"io"
	"net/http"

	"github.com/drgolem/audioengine/pkg/inputsource"
)

// Source streams a remote URL over HTTP.
type Source struct {
	url    string
	client *http.Client

	resp          *http.Response
	body          io.ReadCloser
	length        int64
	pos           int64
	eof           bool
	acceptsRanges bool
}

var _ inputsource.InputSource = (*Source)(nil)

// New creates an httpsource.Source for url using client, or
// http.DefaultClient if client is nil.
func New(url string, client *http.Client) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	return &Source{url: url, client: client, length: -1}
}

func (s *Source) Open() error {
	req, err := http.NewRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("httpsource: unexpected status %s", resp.Status)
	}

	s.resp = resp
	s.body = resp.Body
	s.acceptsRanges = resp.Header.Get("Accept-Ranges") == "bytes"
	if resp.ContentLength >= 0 {
		s.length = resp.ContentLength
	}
	s.pos = 0
	s.eof = false
	return nil
}

func (s *Source) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

func (s *Source) Read(buf []byte) (int, error) {
	n, err := s.body.Read(buf)
	s.pos += int64(n)
	if err == io.EOF {
		s.eof = true
		return n, nil
	}
	return n, err
}

func (s *Source) AtEOF() bool   { return s.eof }
func (s *Source) Offset() int64 { return s.pos }
func (s *Source) Length() int64 { return s.length }

func (s *Source) SupportsSeeking() bool { return s.acceptsRanges }

func (s *Source) SeekToOffset(offset int64) error {
	if !s.acceptsRanges {
		return fmt.Errorf("httpsource: server does not advertise range support")
	}
	if s.body != nil {
		s.body.Close()
	}

	req, err := http.NewRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("httpsource: unexpected status %s for range request", resp.Status)
	}

	s.resp = resp
	s.body = resp.Body
	s.pos = offset
	s.eof = false
	return nil
}
