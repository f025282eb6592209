// Package identity implements the external identity collaborators of the
// launcher: building a Session from freshly issued tokens, revoking access
// tokens on logout, and refreshing tokens through golang.org/x/oauth2.
//
// # Building sessions
//
//	b := identity.NewBuilder(profileURL, accountsURL)
//	sess, err := b.BuildSession(ctx, tokens, sessionID)
//	var buildErr *identity.BuildError
//	if errors.As(err, &buildErr) {
//		// login aborted, buildErr.Reason is user visible
//	}
//
// # Refreshing tokens
//
//	r := identity.NewRefresher(clientID, identity.Endpoint(tokenURL))
//	fresh, err := r.Refresh(ctx, sess.Tokens)
package identity
