// Package webadmin provides the web-based administration interface.
//
// # Overview
//
// The web admin lists every model registered on the admin site and shows a
// changelist per model: the first rows of its table with a checkbox per row
// and a select of the bulk actions available to the signed-in user. Posting
// the form runs the chosen action against the checked rows, or against every
// row when "select all" is ticked.
//
// # Routes
//
//	GET  /admin/login                     login form
//	POST /admin/login                     password login
//	POST /admin/logout                    end the session
//	GET  /admin/                          model index
//	GET  /admin/{app}/{model}/            changelist
//	POST /admin/{app}/{model}/            run an action on _selected_action ids
//	GET  /api/v1/export/{app}/{model}     CSV export for bearer-token clients
//
// # Authentication
//
// Browser users sign in with a username and bcrypt password and get a
// session cookie. Only active staff accounts may enter. State-changing forms
// carry a CSRF token that must match the CSRF cookie.
//
// API clients send "Authorization: Bearer <jwt>" with a token minted by
// `csvexport token`. The API answers 404 when the export action is not
// available to the caller for that model.
package webadmin
