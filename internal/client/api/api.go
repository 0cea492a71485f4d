// Package api is the typed surface of the condofee REST API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/condohub/condofee/internal/client"
	"github.com/condohub/condofee/internal/client/session"
)

// Page selects a slice of a list endpoint; zero values use server defaults
type Page struct {
	Limit  int
	Offset int
}

func (p Page) query() string {
	v := url.Values{}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Resource is the CRUD endpoint family rooted at Path
type Resource[T any] struct {
	c    *client.Client
	Path string
}

func NewResource[T any](c *client.Client, path string) *Resource[T] {
	return &Resource[T]{c: c, Path: path}
}

func (r *Resource[T]) List(ctx context.Context, page Page) ([]T, error) {
	return client.Call[[]T](ctx, r.c, http.MethodGet, r.Path+page.query(), nil)
}

func (r *Resource[T]) Get(ctx context.Context, id int64) (T, error) {
	return client.Call[T](ctx, r.c, http.MethodGet, r.item(id), nil)
}

func (r *Resource[T]) Create(ctx context.Context, in interface{}) (T, error) {
	return client.Call[T](ctx, r.c, http.MethodPost, r.Path, in)
}

func (r *Resource[T]) Update(ctx context.Context, id int64, in interface{}) (T, error) {
	return client.Call[T](ctx, r.c, http.MethodPut, r.item(id), in)
}

func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	_, err := client.Call[struct{}](ctx, r.c, http.MethodDelete, r.item(id), nil)
	return err
}

func (r *Resource[T]) item(id int64) string {
	return fmt.Sprintf("%s/%d", r.Path, id)
}

// API groups every resource of the condofee backend. Rows are decoded as
// generic JSON objects; callers that need typed rows use NewResource.
type API struct {
	c *client.Client

	Residents     *Resource[Record]
	Buildings     *Resource[Record]
	Apartments    *Resource[Record]
	Contracts     *Resource[Record]
	Invoices      *Resource[Record]
	Payments      *Resource[Record]
	Services      *Resource[Record]
	Subscriptions *Resource[Record]
	Notifications *Resource[Record]
}

// Record is one row as returned by the API
type Record = map[string]interface{}

func New(c *client.Client) *API {
	return &API{
		c:             c,
		Residents:     NewResource[Record](c, "/residents"),
		Buildings:     NewResource[Record](c, "/buildings"),
		Apartments:    NewResource[Record](c, "/apartments"),
		Contracts:     NewResource[Record](c, "/contracts"),
		Invoices:      NewResource[Record](c, "/invoices"),
		Payments:      NewResource[Record](c, "/payments"),
		Services:      NewResource[Record](c, "/services"),
		Subscriptions: NewResource[Record](c, "/subscriptions"),
		Notifications: NewResource[Record](c, "/notifications"),
	}
}

// Resource looks a resource up by its plural name
func (a *API) Resource(name string) (*Resource[Record], bool) {
	r, ok := map[string]*Resource[Record]{
		"residents":     a.Residents,
		"buildings":     a.Buildings,
		"apartments":    a.Apartments,
		"contracts":     a.Contracts,
		"invoices":      a.Invoices,
		"payments":      a.Payments,
		"services":      a.Services,
		"subscriptions": a.Subscriptions,
		"notifications": a.Notifications,
	}[name]
	return r, ok
}

// Profile returns the logged in resident
func (a *API) Profile(ctx context.Context) (session.User, error) {
	return client.Call[session.User](ctx, a.c, http.MethodGet, session.ProfilePath, nil)
}

// MyInvoices lists the logged in resident's invoices
func (a *API) MyInvoices(ctx context.Context, page Page) ([]Record, error) {
	return client.Call[[]Record](ctx, a.c, http.MethodGet, "/residents/me/invoices"+page.query(), nil)
}

// MyNotifications lists notifications addressed to the logged in resident
func (a *API) MyNotifications(ctx context.Context, page Page) ([]Record, error) {
	return client.Call[[]Record](ctx, a.c, http.MethodGet, "/residents/me/notifications"+page.query(), nil)
}

// Pay settles an invoice
func (a *API) Pay(ctx context.Context, invoiceID int64, amount float64, method string) (Record, error) {
	return client.Call[Record](ctx, a.c, http.MethodPost, "/payments", map[string]interface{}{
		"invoiceId": invoiceID,
		"amount":    amount,
		"method":    method,
	})
}

// Names lists the resource names Resource accepts
func Names() []string {
	return []string{"residents", "buildings", "apartments", "contracts", "invoices",
		"payments", "services", "subscriptions", "notifications"}
}
