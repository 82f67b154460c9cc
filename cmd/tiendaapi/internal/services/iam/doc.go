// Package iam manages principals and their sessions for the Tienda API.
//
// A session is not an in-memory object. It is the set of live rows a principal
// has in the credential ledger:
//
//	NO_CREDENTIAL → LIVE → {REVOKED, EXPIRED}
//
// Login and refresh rotate the ledger in one transaction, so a principal holds
// at most one live access credential once either call returns. Logout flips a
// single row. A new row is never a transition of an old one.
//
// Request Flow:
//
//	Request → middleware.Authn → Service.Authenticate() → auth.SecurityContext
//	       ↓
//	   middleware.Authz → Casbin (route policies by authority)
//
// Every expected failure is returned as an *Error value carrying an HTTP
// status and the messages shown to the client.
package iam
