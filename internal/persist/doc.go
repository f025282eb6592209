// Package persist ships configuration documents to the remote store.
//
// A Persister keeps at most one outbound save in flight per document kind.
// Requests made while a save is in flight are dropped; the Flusher re-issues
// non-forced requests on a fixed interval so a change made during a save is
// picked up by the next tick:
//
//	p := persist.New(store, client, persist.WithSaveTimeout(30*time.Second))
//	go persist.NewFlusher(p, 5*time.Second, clockwork.NewRealClock()).Run(ctx)
//	res := <-p.RequestSave(ctx, settings.KindConfig, false)
package persist
