// Package lazyns controls the exported namespace of a package and loads
// its implementation lazily.
//
// A package declares which public names it exports and where each one is
// implemented:
//
//	lazyns.Init(ctx, "pkg", lazyns.ExportSpec{
//		"Path":  ".impl.path:Path",
//		"Parse": ".impl.parse:Parse",
//		"util": lazyns.ExportSpec{
//			"Join": ".impl.path:Join",
//		},
//		"json": "encoding.json",
//	})
//
// Locations read "<unit>[:<attr.chain>]". A unit starting with "." is
// relative to the package. Nothing is imported until a name is first read
// through Module.GetAttr; the value is then cached for good. Nested specs
// become child namespaces registered as "pkg.util", and whole-unit
// locations become aliases registered as "pkg.json".
//
// Two keys are reserved: "__doc__" declares the namespace documentation
// and "__onfirstaccess__" names a function run once, before the first
// name is resolved.
//
// All resolution in a Runtime is serialized by one reentrant lock.
// Ownership of the lock travels in the context, so hooks and loaders that
// read other lazy names must pass on the context they were given.
package lazyns
