// Package http exposes the room booking services over a gin router.
//
// Every route under /api/v1 requires an `Authorization: Bearer <jwt>` header
// signed with HS256 and carrying `sub` (user ID) and `role`
// (student, lecturer, or admin) claims. Responses use the envelope
// {"code","message","data","details"}; code 0 means success.
//
//   - GET /health: storage liveness, unauthenticated.
//   - /api/v1/campuses and /api/v1/campuses/{id}: campus catalog. Mutations are
//     admin only.
//   - /api/v1/rooms and /api/v1/rooms/{id}: room catalog, filterable by
//     campus_id. Mutations are admin only.
//   - GET /api/v1/rooms/{id}/availability?start=&end=: availability check with
//     optional exclude_booking_id and buffer_minutes.
//   - GET /api/v1/rooms/{id}/calendar?from=&to=&format=ics: merged bookings and
//     schedule occurrences as JSON or an iCalendar feed.
//   - /api/v1/bookings and /api/v1/bookings/{id}: request, reschedule, get,
//     list, and delete bookings. POST /bookings/{id}/decision approves or
//     rejects; POST /bookings/{id}/cancel cancels.
//   - /api/v1/schedules and /api/v1/schedules/{id}: recurring schedules.
//   - GET /api/v1/reports/bookings: admin booking report as xlsx.
//
// Request and response DTOs live next to their handlers.
package http
