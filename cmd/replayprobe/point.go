// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/replayprobe/services/replay/point"
)

func newPointCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "point",
		Short: "Convert execution points to and from their protocol form",
	}
	cmd.AddCommand(newPointEncodeCmd(a), newPointDecodeCmd(a))
	return cmd
}

type pointFlags struct {
	checkpoint int64
	progress   int64
	kind       string
	offset     int64
	frame      int64
	function   string
}

func (f pointFlags) point() (point.Point, error) {
	p := point.Point{Checkpoint: f.checkpoint, Progress: f.progress}
	if f.kind == "" {
		return p, nil
	}
	kind := point.Kind(f.kind)
	if !kind.Valid() {
		return point.Point{}, fmt.Errorf("unknown position kind %q", f.kind)
	}
	p.Position = &point.Position{
		Kind:       kind,
		Offset:     f.offset,
		FunctionID: f.function,
		FrameIndex: f.frame,
	}
	return p, nil
}

func newPointEncodeCmd(a *app) *cobra.Command {
	var f pointFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a point as a decimal string",
		Example: `  replayprobe point encode --checkpoint 3 --progress 120
  replayprobe point encode --checkpoint 3 --progress 120 --kind OnStep --offset 7 --frame 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.point()
			if err != nil {
				return err
			}
			codec := point.NewCodec()
			text, err := codec.Stringify(p)
			if err != nil {
				return err
			}
			renderPoint(a.printer(cmd.OutOrStdout()), text, p)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&f.checkpoint, "checkpoint", point.FirstCheckpointID, "checkpoint id")
	flags.Int64Var(&f.progress, "progress", 0, "progress counter")
	flags.StringVar(&f.kind, "kind", "", "position kind: EnterFrame, OnStep, OnThrow, OnPop, OnUnwind")
	flags.Int64Var(&f.offset, "offset", 0, "bytecode offset (OnStep only)")
	flags.Int64Var(&f.frame, "frame", 0, "frame index from the bottom of the stack")
	flags.StringVar(&f.function, "function", "", "function id, shown but not encoded")
	return cmd
}

func newPointDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <decimal>",
		Short: "Decode a decimal point string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := point.NewCodec().Parse(args[0])
			if err != nil {
				return err
			}
			renderPoint(a.printer(cmd.OutOrStdout()), args[0], p)
			return nil
		},
	}
}
