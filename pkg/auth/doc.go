// Package auth provides user identity for creditmeter: session tokens,
// password hashing, Google sign-in, and the signup/login flows that tie them
// to the user store and subscription provisioning.
//
// # Session tokens
//
// TokenManager issues HS256 JWTs carrying the user id in "sub" and the email
// address in "email":
//
//	tm, err := auth.NewTokenManager(secret, 24*time.Hour)
//	token, err := tm.Issue(user.ID, user.Email)
//	claims, err := tm.Verify(token)
//	// claims.Subject == user.ID
//
// Verify returns ErrExpiredToken for an expired token and ErrInvalidToken
// for everything else: bad signature, wrong algorithm, missing subject.
//
// # Passwords
//
// HashPassword and CheckPassword wrap bcrypt at the default cost.
//
// # Google sign-in
//
// GoogleVerifier checks Google ID tokens against Google's published keys,
// requiring issuer https://accounts.google.com and the configured client id
// as audience.
//
// # Flows
//
// Service.Signup creates an email/password user, provisions the free plan,
// and returns a token with the user view. Service.GoogleLogin does the same
// on first sight of a Google account and simply logs in afterwards.
package auth
