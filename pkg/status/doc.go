/*
Package status tracks which stage a transfer or purge is in and reports
per-file progress while a stage runs.

	+-------+    +---------+    +-----------+    +-----------+    +------+
	| START | -> | COPYING | -> | VERIFYING | -> | RECORDING | -> | DONE |
	+---+---+    +----+----+    +-----+-----+    +-----+-----+    +------+
	    |             |               |                |
	    +-------------+---------------+----------------+--> FAILED

	purge:  START -> MEASURING -> PURGING -> RECORDING -> DONE

🎯 Purpose:
- Holds the stage machine shared by both orchestrators
- Rejects transitions the machine does not allow
- Reports progress for long file walks (copy, digest)

🤝 Interfaces:
- Reporter: receives progress from the copier and the verifier
- FileFormatter: renders progress and transition messages

🔍 Example:

	tracker := status.NewTracker(logger)
	if err := tracker.Transition(ctx, status.StageCopying); err != nil {
		return err
	}
	tracker.StartOperation(ctx, "copying", len(files))
*/
package status
