// Package admin is the registry that connects models to their admin behavior.
//
// A Site holds one ModelAdmin per model, keyed by "app_label.model_name",
// plus a table of site-wide actions offered on every model. Bulk actions
// receive the selected records as a lazy model.QuerySet:
//
//	site := admin.NewSite()
//	site.Register(admin.NewBase(meta))
//	site.AddAction(admin.Action{Name: "export_as_csv", Func: fn})
//
//	for _, a := range site.Actions(ma, principal) { ... }
//
// ModelAdmin implementations add their own actions through Actions(p), which
// lets an admin offer an action only to principals allowed to run it.
package admin
