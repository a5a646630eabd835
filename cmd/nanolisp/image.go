// Copyright © 2026 The nanolisp authors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nanolisp/nanolisp/lisp"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Save or boot a persisted heap image",
}

var imageSaveCmd = &cobra.Command{
	Use:   "save <out-file>",
	Short: "Snapshot a freshly-initialized runtime to an image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newConfiguredRuntime()
		if err != nil {
			return err
		}
		installDemoExtensions(rt)
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return lisp.SaveImage(rt, f, lisp.SymWord(lisp.SymNil))
	},
}

var imageBootCmd = &cobra.Command{
	Use:   "boot <in-file>",
	Short: "Boot a runtime from a saved image and report its header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		rt, startup, err := lisp.BootImage(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "cells=%d aux_free=%d global_env=%v startup=%v\n",
			rt.Heap.NumCells(), rt.Aux.NumFree(), rt.GlobalEnv, startup)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.AddCommand(imageSaveCmd, imageBootCmd)
}
