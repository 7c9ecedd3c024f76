// Package agent defines the operation surface every merchant integration
// exposes: login, balance, join. Login hands back an explicit Session that
// the caller threads into Balance; agents hold no hidden login state.
package agent

import (
	"context"
	"net/http"
	"time"
)

// Session is the state a successful login established. API agents carry the
// negotiated auth headers; scraper agents carry cookies.
type Session struct {
	Headers     map[string]string
	Cookies     []*http.Cookie
	Credentials map[string]any
}

// Transaction is one loyalty scheme transaction.
type Transaction struct {
	Date        time.Time
	Description string
	Points      float64
}

// Balance is the normalized balance payload an agent returns.
type Balance struct {
	Points       float64
	Value        float64
	Currency     string
	Transactions []Transaction
}

// JoinRequest carries the caller's credentials and consent records into a
// join attempt.
type JoinRequest struct {
	Credentials map[string]any
	Consents    []map[string]any
}

// JoinResult is the normalized outcome of a join attempt. Pending means the
// merchant accepted the request and will call back later.
type JoinResult struct {
	Pending     bool
	Identifiers map[string]any
}

type Agent interface {
	Login(ctx context.Context, credentials map[string]any) (Session, error)
	Balance(ctx context.Context, session Session) (Balance, error)
	Join(ctx context.Context, req JoinRequest) (JoinResult, error)
}
