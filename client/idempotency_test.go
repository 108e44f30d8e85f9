package client_test

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/releasy/client"
)

func TestIdempotencyKey_Header(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	cust := srv.SeedCustomer("acme")
	user := srv.SeedUser(cust.ID, "ops@acme.test")

	tests := map[string]struct {
		call      func(key string) error
		expHeader bool
	}{
		"createCustomer": {
			call: func(key string) error {
				_, err := c.AdminCreateCustomer(t.Context(), client.AdminCreateCustomerRequest{Name: "globex"}, client.WithIdempotencyKey(key))
				return err
			},
			expHeader: true,
		},
		"createUser": {
			call: func(key string) error {
				_, err := c.CreateUser(t.Context(), client.UserCreateRequest{Email: "new@acme.test", CustomerID: cust.ID}, client.WithIdempotencyKey(key))
				return err
			},
			expHeader: true,
		},
		"createEntitlement": {
			call: func(key string) error {
				_, err := c.CreateEntitlement(t.Context(), cust.ID, client.EntitlementCreateRequest{Product: "relay", StartsAt: 1}, client.WithIdempotencyKey(key))
				return err
			},
			expHeader: true,
		},
		"createKey": {
			call: func(key string) error {
				_, err := c.AdminCreateKey(t.Context(), client.AdminCreateKeyRequest{CustomerID: cust.ID}, client.WithIdempotencyKey(key))
				return err
			},
			expHeader: true,
		},
		"updateCustomer": {
			call: func(key string) error {
				_, err := c.UpdateCustomer(t.Context(), cust.ID, client.AdminUpdateCustomerRequest{}, client.WithIdempotencyKey(key))
				return err
			},
		},
		"createRelease": {
			call: func(key string) error {
				_, err := c.CreateRelease(t.Context(), client.ReleaseCreateRequest{Product: "relay", Version: "1.0.0"}, client.WithIdempotencyKey(key))
				return err
			},
		},
		"getUser": {
			call: func(key string) error {
				_, err := c.GetUser(t.Context(), user.ID, client.WithIdempotencyKey(key))
				return err
			},
		},
		"headerOption": {
			call: func(key string) error {
				_, err := c.GetCustomer(t.Context(), cust.ID, client.WithHeader(client.HeaderIdempotencyKey, key))
				return err
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			key := client.NewIdempotencyKey()

			if err := tc.call(key); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			req, ok := srv.LastRequest()
			if !ok {
				t.Fatal("no request recorded")
			}

			got := req.Header.Get(client.HeaderIdempotencyKey)
			if tc.expHeader && got != key {
				t.Errorf("Idempotency-Key = %q, want %q", got, key)
			}
			if !tc.expHeader && got != "" {
				t.Errorf("Idempotency-Key should not be sent, got %q", got)
			}
		})
	}
}

func TestIdempotencyKey_NotSentByDefault(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)

	if _, err := c.AdminCreateCustomer(t.Context(), client.AdminCreateCustomerRequest{Name: "acme"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := srv.LastRequest()
	if _, ok := req.Header[http.CanonicalHeaderKey(client.HeaderIdempotencyKey)]; ok {
		t.Error("Idempotency-Key should be absent without the option")
	}
}

func TestIdempotencyKey_Replay(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	key := client.NewIdempotencyKey()
	req := client.AdminCreateCustomerRequest{Name: "acme"}

	first, err := c.AdminCreateCustomer(t.Context(), req, client.WithIdempotencyKey(key))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	second, err := c.AdminCreateCustomer(t.Context(), req, client.WithIdempotencyKey(key))
	if err != nil {
		t.Fatalf("retried create: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("retry produced a different customer (-first +second):\n%s", diff)
	}

	list, err := c.ListCustomers(t.Context(), client.AdminCustomerListQuery{})
	if err != nil {
		t.Fatalf("listing customers: %v", err)
	}
	if len(list.Customers) != 1 {
		t.Errorf("expected one customer after a replayed create, got %d", len(list.Customers))
	}

	if _, err := c.AdminCreateCustomer(t.Context(), req, client.WithIdempotencyKey(client.NewIdempotencyKey())); err != nil {
		t.Fatalf("create with fresh key: %v", err)
	}
	list, err = c.ListCustomers(t.Context(), client.AdminCustomerListQuery{})
	if err != nil {
		t.Fatalf("listing customers: %v", err)
	}
	if len(list.Customers) != 2 {
		t.Errorf("a fresh key should create again, got %d customers", len(list.Customers))
	}
}

func TestNewIdempotencyKey_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		k := client.NewIdempotencyKey()
		if _, dup := seen[k]; dup {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}
}
