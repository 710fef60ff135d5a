// Command 4dsh is an interactive shell over the fourd driver: a prompt
// that rewrites and executes SQL against a 4D server, paging and
// rendering the result as a table, grounded on the Bubble Tea/Lipgloss
// REPL shape of the package this module's ambient stack was learned
// from.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mbertoldi/go-fourd/fourd"
)

func main() {
	dsn := flag.String("dsn", "", "4D connection string (host=...;port=...;user=...;password=...;database=...)")
	host := flag.String("host", "localhost", "server host, used when -dsn is omitted")
	port := flag.Int("port", 19812, "server port, used when -dsn is omitted")
	user := flag.String("user", "", "login name")
	password := flag.String("password", "", "login password")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var (
		conn *fourd.Connection
		err  error
	)
	if *dsn != "" {
		conn, err = fourd.Open(ctx, *dsn)
	} else {
		conn, err = fourd.Connect(ctx,
			fourd.WithHost(*host), fourd.WithPort(*port),
			fourd.WithUser(*user), fourd.WithPassword(*password))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "4dsh: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	p := tea.NewProgram(newModel(conn))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "4dsh: %v\n", err)
		os.Exit(1)
	}
}
