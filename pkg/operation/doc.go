/*
Package operation implements the transfer, purge and verify runs of relocate.

	+-------------+
	|  Operation  |
	| (Sequence)  |
	+------+------+
	       |
	+------+------+------+------+
	|      |      |      |      |
	Copier Verifier Sizer Store Tracker

🎯 Purpose:
- Drives one run through its stages on a status.Tracker
- Decides when an audit record may be written
- Decides when a source tree may be deleted

🔄 Flow (transfer):
1. Resolve the target under the parent, warn if it already exists
2. Copy the tree
3. Verify every regular file against the manifest
4. Measure the source and append a verified record
5. With DeleteSource, delete the source after the record is stored

🔄 Flow (purge):
1. Check source, target and that the target is not inside the source
2. Measure the source, nothing is deleted if this fails
3. Delete the source, nothing is recorded if this fails
4. Append an unverified record; failure here is an audit inconsistency

⚡ Error kinds:
Every returned error carries a fault.Kind so the command can map it to an
exit status. Failures mark the tracker FAILED and leave the history intact.

🔍 Example:

	op := operation.NewTransfer(deps, operation.TransferOptions{
		Source:       "/data/run1",
		TargetParent: "/archive",
		PI:           "jdoe",
	})
	err := operation.NewRunner(&logger).Run(ctx, op)
*/
package operation
