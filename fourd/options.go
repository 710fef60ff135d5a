package fourd

import "log"

// options collects the values functional Options apply, composing over DSN
// defaults the same way the original connect() composes keyword arguments
// over DSN-supplied values.
type options struct {
	host      string
	port      int
	user      string
	password  string
	database  string
	arraySize int
	pageSize  int
	logger    *log.Logger
	imageType string
}

func defaultOptions() options {
	return options{
		port:      defaultPort,
		arraySize: 1,
		pageSize:  100,
		logger:    log.Default(),
		imageType: DefaultImageType,
	}
}

// Option configures a Connection at Connect/Open time.
type Option func(*options)

// WithHost overrides the server host.
func WithHost(host string) Option { return func(o *options) { o.host = host } }

// WithPort overrides the server port.
func WithPort(port int) Option { return func(o *options) { o.port = port } }

// WithUser overrides the login user name.
func WithUser(user string) Option { return func(o *options) { o.user = user } }

// WithPassword overrides the login password.
func WithPassword(password string) Option { return func(o *options) { o.password = password } }

// WithDatabase overrides the target database name.
func WithDatabase(database string) Option { return func(o *options) { o.database = database } }

// WithArraySize sets the Cursor default fetch batch size used by
// FetchMany's implicit n (spec §3, Cursor's "array size" attribute).
func WithArraySize(n int) Option { return func(o *options) { o.arraySize = n } }

// WithPageSize sets the server-side first-page hint sent as
// FIRST-PAGE-SIZE on every EXECUTE-STATEMENT (spec §3, default 100).
func WithPageSize(n int) Option { return func(o *options) { o.pageSize = n } }

// WithLogger sets the logger used for best-effort teardown diagnostics.
// Defaults to log.Default().
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithImageType overrides the PREFERRED-IMAGE-TYPES value advertised at
// login. Defaults to the process-scope DefaultImageType config flag.
func WithImageType(t string) Option { return func(o *options) { o.imageType = t } }
