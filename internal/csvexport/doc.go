// Package csvexport provides the "Export selected object(s) as CSV file" bulk
// action for admin-registered models.
//
// An Exporter is built once from Options. It can add the action to every
// model on a site (Install) or to individual admins (Attach, Register).
// Admins customise the export by implementing the optional FieldLister,
// Filenamer, PermissionChecker, and ColumnResolver interfaces, or by using
// the ready-made ModelAdmin.
//
// The action writes a single CSV attachment: a header row with the column
// names followed by one row per selected record, in selection order.
package csvexport
