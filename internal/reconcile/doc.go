// Package reconcile applies device status changes optimistically and then
// confirms them against a backend whose reads lag behind its writes.
//
// A change runs as a cycle:
//
//	applying   the cached status is already the desired one; the full
//	           record is being PUT
//	verifying  the PUT succeeded; the device is re-read after 1s, 2s, 3s
//
// and ends in exactly one of:
//
//	converged    a read returned the desired status; the cache takes the
//	             server's record
//	rolled_back  the PUT failed; the cache returns to the previous status
//	warning      no read confirmed the change; the optimistic status stays
//	             and the record is flagged Unconfirmed
//	superseded   a newer change for the same device replaced this one
//
// Only a failed PUT rolls back. A write the backend accepted is assumed
// durable even if reads never catch up.
//
// While a cycle is live its desired status wins over anything a Refresh
// brings in for that device, so a stale list page cannot flicker the value
// back.
//
// # Usage
//
//	engine := reconcile.NewEngine(client, reconcile.DefaultOptions())
//	defer engine.Close()
//
//	if _, err := engine.Refresh(ctx, fleetapi.ListParams{Page: 1, PageSize: 20}); err != nil {
//	    return err
//	}
//
//	sub, err := engine.RequestStatusChange(id, fleetapi.StatusAbnormal)
//	if err != nil {
//	    return err // validation, not found or conflict; nothing changed
//	}
//	for ev := range sub.Events() {
//	    fmt.Println(ev.Type, ev.Attempt)
//	}
package reconcile
