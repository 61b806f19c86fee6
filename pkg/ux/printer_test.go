// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)

	p.Title("ignored")
	p.Success("done")
	p.Error("bad")
	p.Fields([]Field{{"run", "r1"}, {"empty", ""}, {"outcome", "completed"}})
	p.Box("report", "a\nb", false)
	p.Table([]string{"A", "B"}, [][]string{{"1", "2"}})

	assert.Equal(t, "OK\tdone\nERROR\tbad\nrun\tr1\noutcome\tcompleted\nreport\ta b\n1\t2\n", buf.String())
}

func TestPrinter_PlainAlignsFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Fields([]Field{{"id", "1"}, {"outcome", "x"}})
	assert.Equal(t, "id       1\noutcome  x\n", buf.String())
}

func TestPrinter_PlainTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Table([]string{"RUN", "OUTCOME"}, [][]string{{"abc", "completed"}, {"defgh", "aborted"}})
	assert.Equal(t, "RUN    OUTCOME\nabc    completed\ndefgh  aborted\n", buf.String())
}

func TestPrinter_PlainStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Warning("careful")
	assert.Equal(t, "⚠ careful\n", buf.String())
}

func TestPrinter_RichContainsText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeRich)

	p.Box("Exploration", "outcome completed", true)
	p.Title("Heading")
	assert.Contains(t, buf.String(), "Exploration")
	assert.Contains(t, buf.String(), "outcome completed")
	assert.Contains(t, buf.String(), "Heading")
	assert.Equal(t, ModeRich, p.Mode())
}

func TestForWriter(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, ModePlain, ForWriter(&buf, false).Mode())
	assert.Equal(t, ModeMachine, ForWriter(&buf, true).Mode())
}
