// Package auth provides identities and authentication for the admin.
//
// # Principals
//
// A Principal is an admin user plus the permission codes granted to them.
// Permission codes have the form "app_label.codename", for example
// "shop.csv_order". HasPerm follows the usual admin rules:
//
//   - inactive principals hold no permissions
//   - active superusers hold every permission
//   - everyone else holds exactly what was granted
//
// Only active staff principals may use the admin UI or the export API.
//
// # Passwords
//
// Admin passwords are stored as bcrypt hashes (HashPassword, CheckPassword).
//
// # API Tokens
//
// Scripts call the export API with a bearer JWT signed with HS256 using
// auth.jwt_secret. The "sub" claim carries the user ID:
//
//	verifier, err := NewJWTVerifier(secret)
//	token, err := verifier.Generate(userID, 24*time.Hour)
//
// HTTPAuthMiddleware verifies the token, loads the principal through a
// PrincipalLoader, and attaches it to the request context.
package auth
