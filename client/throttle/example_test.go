package throttle_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/adamwoolhether/releasy/client/throttle"
)

func ExampleNewRoundTripper() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// Two requests a second per host, bursts of up to four.
	rt, err := throttle.NewRoundTripper(2, 4, nil, srv.Client().Transport)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	hc := &http.Client{Transport: rt}

	for range 4 {
		resp, err := hc.Get(srv.URL)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		resp.Body.Close()
		fmt.Println(resp.StatusCode)
	}
	// Output:
	// 204
	// 204
	// 204
	// 204
}
