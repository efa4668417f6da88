// Package ui renders fleetctl output in the terminal with Lip Gloss, and
// drives the live status change view with Bubble Tea.
//
// A status change is shown as a header, a step list and a result box:
//
//	╭──────────────────────────────────────────╮
//	│  STATUS CHANGE                           │
//	│  fleetctl set-status                     │
//	│  ────────────────────────────────────    │
//	│  Device: ward-1-ecg (653421142357639201) │
//	╰──────────────────────────────────────────╯
//	  [1/4] Write full record     ✓  (accepted)
//	  [2/4] Read back #1          ↻  (still online)
//	  [3/4] Read back #2          ✓  (reads abnormal)
//	  [4/4] Read back #3          ⊘
//
// CycleView turns reconcile events into that state. LiveCycle redraws it in
// place on a terminal; CycleRunner prints finished steps line by line when
// output is redirected.
//
// Logging stays silent unless FLEETSYNC_LOG_LEVEL is set, so zap output
// does not interleave with the rendered view.
package ui
