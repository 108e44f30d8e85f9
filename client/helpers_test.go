package client_test

import (
	"io"
	"net/http"
)

func readAll(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	return io.ReadAll(r.Body)
}
