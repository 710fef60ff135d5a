package fourd

// Process-scope configuration flags (spec §6.4). These mirror the
// original driver's module-level __LOGIN_BASE64__/__STATEMENT_BASE64__
// globals: they are intentionally process, not per-connection, scope and
// carry no mutex, matching that original design.
var (
	LoginUseBase64     = true
	StatementUseBase64 = true
	DefaultImageType   = "png"
)
