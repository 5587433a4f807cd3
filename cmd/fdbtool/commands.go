package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nyan233/filedb"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	dir    string
	name   string
	log    logOptions
	logger *slog.Logger
	closer io.Closer
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:          "fdbtool",
		Short:        "Inspect and edit filedb databases and tree index files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			o.logger, o.closer, err = newLogger(o.log, cmd.ErrOrStderr())
			if err != nil {
				return
			}
			o.logger.Debug("fdbtool start", "command", cmd.CommandPath(), "dir", o.dir, "name", o.name)
			return
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return o.closer.Close()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.dir, "dir", ".", "database directory")
	pf.StringVar(&o.name, "name", "", "database name")
	pf.StringVar(&o.log.Level, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&o.log.File, "log-file", "", "write JSON logs to this file instead of stderr")
	pf.IntVar(&o.log.MaxSize, "log-max-size", 100, "megabytes before the log file is rotated")
	pf.IntVar(&o.log.MaxBackups, "log-max-backups", 3, "rotated log files to keep")
	pf.IntVar(&o.log.MaxAge, "log-max-age", 28, "days to keep rotated log files")
	pf.BoolVar(&o.log.Compress, "log-compress", false, "gzip rotated log files")

	root.AddCommand(
		newInitCmd(o),
		newInsertCmd(o),
		newSelectCmd(o),
		newDeleteCmd(o),
		newInfoCmd(o),
		newTreeCmd(o),
	)
	return root
}

func (o *rootOptions) openDB(schema *filedb.Metadata) (*filedb.DB, error) {
	if o.name == "" {
		return nil, errors.New("--name is required")
	}
	return filedb.Open(filedb.Config{
		RootDir: o.dir,
		Name:    o.name,
		Schema:  schema,
		Logger:  o.logger,
	})
}

func readYAML(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err = yaml.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newInitCmd(o *rootOptions) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a database from a YAML schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var schema filedb.Metadata
			if err := readYAML(schemaPath, &schema); err != nil {
				return err
			}
			db, err := o.openDB(&schema)
			if err != nil {
				return err
			}
			md := db.Metadata()
			fmt.Fprintf(cmd.OutOrStdout(), "database %s: %d columns, %d indexes, %d rows\n",
				o.name, len(md.Cols), len(md.Indexes), md.Rows)
			return db.Close()
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML file with cols, description and indexes")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newInsertCmd(o *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert the rows listed in a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []filedb.Row
			if err := readYAML(file, &rows); err != nil {
				return err
			}
			db, err := o.openDB(nil)
			if err != nil {
				return err
			}
			n, err := db.Insert(rows)
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d of %d rows\n", n, len(rows))
			if cerr := db.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML list of rows")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// parseWhere splits "column=v1,v2".
func parseWhere(s string) (string, []string, error) {
	col, vals, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return "", nil, errors.Errorf("bad --where %q, want column=v1,v2", s)
	}
	return col, strings.Split(vals, ","), nil
}

func newSelectCmd(o *rootOptions) *cobra.Command {
	var (
		where   []string
		columns []string
		offset  int
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Print matching rows as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := o.openDB(nil)
			if err != nil {
				return err
			}
			defer db.Close()
			q := db.Query()
			if len(columns) > 0 {
				q.Columns(columns...)
			}
			for _, w := range where {
				col, vals, err := parseWhere(w)
				if err != nil {
					return err
				}
				q.Where(col, vals...)
			}
			if offset != 0 || limit != 0 {
				amount := limit
				if amount == 0 {
					amount = math.MaxInt
				}
				q.Limit(offset, amount)
			}
			rows, err := q.Select()
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), rows)
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&where, "where", nil, "column=v1,v2; repeat to intersect columns")
	f.StringSliceVar(&columns, "columns", nil, "columns to print")
	f.IntVar(&offset, "offset", 0, "matching rows to skip")
	f.IntVar(&limit, "limit", 0, "rows to print, 0 for all")
	return cmd
}

func newDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove every row and index entry, keeping the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := o.openDB(nil)
			if err != nil {
				return err
			}
			if err = db.Delete(); err != nil {
				_ = db.Close()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s cleared\n", o.name)
			return db.Close()
		},
	}
}

func newInfoCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the database metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := o.openDB(nil)
			if err != nil {
				return err
			}
			defer db.Close()
			return writeYAML(cmd.OutOrStdout(), db.Metadata())
		},
	}
}

func newTreeCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Work with a single tree index file",
	}
	open := func(path string) (*filedb.Tree, error) {
		return filedb.OpenTree(path, &filedb.TreeOption{Logger: o.logger})
	}
	parse := func(s string) (uint64, error) {
		v, err := strconv.ParseUint(s, 10, 64)
		return v, errors.Wrapf(err, "bad number %q", s)
	}
	put := &cobra.Command{
		Use:   "put <path> <key> <value>",
		Short: "Insert a key/value pair",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parse(args[1])
			if err != nil {
				return err
			}
			val, err := parse(args[2])
			if err != nil {
				return err
			}
			t, err := open(args[0])
			if err != nil {
				return err
			}
			defer t.Close()
			n, err := t.Put(key, val)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes\n", n)
			return t.Sync()
		},
	}
	get := &cobra.Command{
		Use:   "get <path> <key>",
		Short: "Print every value stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parse(args[1])
			if err != nil {
				return err
			}
			t, err := open(args[0])
			if err != nil {
				return err
			}
			defer t.Close()
			navs, found, err := t.Get(key)
			if err != nil {
				return err
			}
			if !found {
				return errors.Errorf("key %d not found", key)
			}
			for _, nav := range navs {
				fmt.Fprintf(cmd.OutOrStdout(), "key=%d value=%d\n", nav.Key(), nav.Value())
			}
			return nil
		},
	}
	check := &cobra.Command{
		Use:   "check <path>",
		Short: "Verify the structure of a tree file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := open(args[0])
			if err != nil {
				return err
			}
			defer t.Close()
			sum, err := t.Check()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "root=%d nodes=%d elements=%d depth=%d\n",
				sum.Root, sum.Nodes, sum.Elements, sum.Depth)
			return nil
		},
	}
	cmd.AddCommand(put, get, check)
	return cmd
}
