// Package http exposes the calendar API over HTTP.
//
// Every route is declared once in the table built by Routes, together with
// its method, pattern and whether it is public. Non-public routes pass the
// AuthGate before their handler runs. Every JSON response, success or
// failure, uses the envelope {success, message, data, timestamp}.
//
// Endpoints:
//   - POST /api/login (public): body {"username","password"}. Sets the
//     session_token cookie and returns {token, user_id, username, expires_at}.
//   - GET /api/check_session (public): {authenticated, username?, user_id?}.
//   - POST /api/logout: revokes the presented session and clears the cookie.
//   - GET /api/events[?start&end&type], POST /api/events,
//     GET|PUT|DELETE /api/events/{id}, GET /api/events/today,
//     GET /api/events/upcoming, GET /api/events/export (text/calendar).
//   - GET /api/uploads, DELETE /api/uploads/{name}, POST /api/upload
//     (multipart field "file" or JSON), POST /api/upload_base64
//     (JSON {"filename","content"}).
//
// Any other path under /api/ answers 404 "invalid path".
package http
