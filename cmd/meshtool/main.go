// meshtool inspects and converts terracam tile stores.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/Faultbox/terracam/internal/engine/terrain"
	"github.com/Faultbox/terracam/internal/tilestore"
	"github.com/Faultbox/terracam/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "check":
		cmdCheck(args)
	case "convert":
		cmdConvert(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshtool - terracam tile store utility

Usage:
  meshtool <command> [options]

Commands:
  info <manifest>                      Show tile count, extent and mesh sizes
  check <manifest> [--tol 1e-6]        Verify that neighbouring tiles share their edges
  convert <manifest> <out_dir> <fmt>   Re-encode the tiles as ply or stl

Examples:
  meshtool info tiles/dtm.json
  meshtool check tiles/dtm.json
  meshtool convert tiles/dtm.json tiles_stl stl`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func openGrid(manifest string) (*tilestore.Store, *terrain.Grid) {
	store, err := tilestore.Open(manifest)
	if err != nil {
		fatal(err)
	}
	g, err := store.Grid()
	if err != nil {
		fatal(err)
	}
	return store, g
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool info <manifest>")
		os.Exit(1)
	}

	store, g := openGrid(args[0])
	m := store.Manifest

	var vertices, faces, textured int
	for _, t := range g.Tiles {
		vertices += len(t.Mesh.Vertices)
		faces += len(t.Mesh.Faces)
		if _, ok, _ := store.OrthoPath(t.ID); ok {
			textured++
		}
	}

	fmt.Printf("Store:     %s\n", store.Name())
	fmt.Printf("EPSG:      %d\n", m.EPSG)
	fmt.Printf("Tiles:     %d (%d rows x %d cols)\n", len(g.Tiles), g.Rows, g.Cols)
	fmt.Printf("Min:       %.3f %.3f %.3f\n", m.MinXYZ[0], m.MinXYZ[1], m.MinXYZ[2])
	fmt.Printf("Max:       %.3f %.3f %.3f\n", m.MaxXYZ[0], m.MaxXYZ[1], m.MaxXYZ[2])
	fmt.Printf("Vertices:  %d\n", vertices)
	fmt.Printf("Triangles: %d\n", faces)
	fmt.Printf("Textured:  %d\n", textured)
}

func cmdCheck(args []string) {
	fs := pflag.NewFlagSet("check", pflag.ExitOnError)
	tol := fs.Float64("tol", 1e-6, "Coordinate tolerance")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool check <manifest> [--tol 1e-6]")
		os.Exit(1)
	}

	_, g := openGrid(fs.Arg(0))
	if err := terrain.CheckSeams(g, *tol); err != nil {
		fatal(err)
	}
	fmt.Printf("OK: %d tiles, all seams match\n", len(g.Tiles))
}

func cmdConvert(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool convert <manifest> <out_dir> <ply|stl>")
		os.Exit(1)
	}

	format, err := formats.ParseFormat(args[2])
	if err != nil {
		fatal(err)
	}
	store, g := openGrid(args[0])

	manifest, err := tilestore.Save(g, args[1], store.Name(), format)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Converted %d tiles: %s\n", len(g.Tiles), manifest)
}
