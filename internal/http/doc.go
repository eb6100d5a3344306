// Package http exposes the campus portal over JSON/HTTP.
//
// The router exposes the following endpoints:
//   - POST /sessions: signs in with {"identifier","secret"} where identifier is an
//     account id or email. Response: {"token","expires_at","account"}. The token is
//     also surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - POST /sessions/federated: exchanges an identity provider {"id_token"} for a
//     portal session, provisioning the account on first sign-in.
//   - DELETE /sessions/current: revokes the current token. Returns 204.
//   - POST /accounts: public registration. New accounts are always students.
//   - GET /accounts?role=, GET /accounts/me, GET /accounts/{id}, PATCH /accounts/{id}:
//     directory lookups and profile edits exchanging `accountDTO`.
//   - GET /events?day=YYYY-MM-DD or ?upcoming=N, POST /events, GET/PATCH/DELETE
//     /events/{id}: calendar events exchanging `eventDTO`.
//   - GET /events/stream: server-sent events carrying every calendar snapshot.
//   - GET /calendar/month?month=YYYY-MM: the 6x7 month grid with has-events markers.
//   - POST /feedback (anonymous), GET /feedback (admin).
//   - POST /notifications (admin), GET /notifications (inbox for the caller's role).
//   - POST /chat/messages, DELETE /chat/conversation: the study assistant.
//   - GET /healthz and GET /metrics.
//
// Every timestamp is serialized as RFC 3339 with nanoseconds in UTC.
// Request/response DTOs live alongside their respective handlers.
package http
