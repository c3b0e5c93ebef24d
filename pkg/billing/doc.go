// Package billing keeps each user's local subscription record consistent with
// Stripe.
//
// # Reconciliation
//
// Two producers write into one idempotent sink, Store.ApplyByCustomer:
//
//   - ConfirmSession, called when the user returns from hosted checkout
//   - HandleProviderEvent, called by Stripe's checkout.session.completed webhook
//
// Both derive their update from the same provider-side subscription snapshot,
// so they converge regardless of arrival order. The sweeper binary adds a
// third producer, Refresh, for records stuck in incomplete or past_due.
//
// # Plan changes
//
//	session, err := reconciler.InitiateCheckout(ctx, userID, "price_pro")
//	// redirect the user to session.URL
//
//	view, err := reconciler.CancelOrDowngradeToFree(ctx, userID)
//
// The free plan never has a Stripe subscription: a record whose status is
// free always has a nil StripeSubscriptionID and the database enforces it.
//
// # Errors
//
// Operations return the sentinel errors in errors.go, wrapped with context.
// Callers compare them with errors.Is.
package billing
