package fourd

import (
	"strconv"
	"strings"

	"github.com/mbertoldi/go-fourd/fourderr"
)

// defaultPort is the 4D server's default listening port.
const defaultPort = 19812

// dsnParams holds the recognized DSN keys (spec §6.3).
type dsnParams struct {
	host     string
	port     int
	user     string
	password string
	database string
}

// parseDSN parses a semicolon-delimited "key=value" DSN string. Unknown
// keys are ignored; a malformed "key=value" pair is an InterfaceError
// (driver misuse, per spec §7).
func parseDSN(dsn string) (dsnParams, error) {
	params := dsnParams{port: defaultPort}
	if dsn == "" {
		return params, nil
	}
	for _, pair := range strings.Split(dsn, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return dsnParams{}, fourderr.InterfaceError("fourd: malformed dsn segment " + strconv.Quote(pair))
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "host":
			params.host = value
		case "port":
			p, err := strconv.Atoi(value)
			if err != nil {
				return dsnParams{}, fourderr.InterfaceError("fourd: dsn port must be numeric: " + value)
			}
			params.port = p
		case "user":
			params.user = value
		case "password":
			params.password = value
		case "database":
			params.database = value
		}
	}
	return params, nil
}
