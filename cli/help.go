// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package cli

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/exp/slices"
	"golang.org/x/term"

	"github.com/openthread/lowpan-ns/logger"
)

//go:embed README.md
var cliHelpFile string

const (
	helpIndent       = "  "
	helpBlockIndent  = "    "
	defaultTermWidth = 80
)

var (
	linkTargetPattern = regexp.MustCompile(`\]\(#[a-z-]+\)`)
)

type helpBlockKind int

const (
	helpText helpBlockKind = iota
	helpDefinition
	helpExample
)

type helpBlock struct {
	kind  helpBlockKind
	lines []string
}

// helpSection is the "### <command>" section of the README.
type helpSection struct {
	name    string
	summary string
	blocks  []helpBlock
}

type Help struct {
	termWidth uint
	sections  map[string]*helpSection
	names     []string
}

func newHelp() Help {
	h := Help{
		termWidth: defaultTermWidth,
		sections:  map[string]*helpSection{},
	}
	h.parse(cliHelpFile)
	h.update()
	return h
}

// update takes the width of the user's terminal into account.
func (help *Help) update() {
	fdTerm := int(os.Stdout.Fd())
	if !term.IsTerminal(fdTerm) {
		return
	}
	width, _, err := term.GetSize(fdTerm)
	if err != nil {
		logger.Warnf("could not get terminal size: %v", err)
		return
	}
	if width > 20 {
		help.termWidth = uint(width)
	}
}

func (help *Help) summary(cmd string) string {
	if sec := help.sections[cmd]; sec != nil {
		return sec.summary
	}
	return ""
}

func (help *Help) outputGeneralHelp() string {
	help.update()
	nameWidth := 0
	for _, name := range help.names {
		if len(name) > nameWidth {
			nameWidth = len(name)
		}
	}
	nameWidth += 2
	pad := strings.Repeat(" ", nameWidth)

	var sb strings.Builder
	for _, name := range help.names {
		lines := help.wrap(help.sections[name].summary, uint(nameWidth))
		for i, line := range lines {
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%-*s%s\n", nameWidth, name, line))
			} else {
				sb.WriteString(pad + line + "\n")
			}
		}
	}
	sb.WriteString("\nFor detailed help per command, use: 'help <command>'\n")
	return sb.String()
}

func (help *Help) outputCommandHelp(command string) string {
	return help.outputHelp([]string{command})
}

// outputHelp renders the sections of the given commands, in given order.
func (help *Help) outputHelp(commands []string) string {
	help.update()
	var sb strings.Builder
	for _, cmd := range commands {
		sb.WriteString(cmd + "\n")
		sec := help.sections[cmd]
		if sec == nil {
			sb.WriteString(helpIndent + "(Non-existent command.)\n")
			continue
		}
		for i, blk := range sec.blocks {
			if i > 0 {
				sb.WriteString("\n")
			}
			switch blk.kind {
			case helpText:
				for _, line := range help.wrap(strings.Join(blk.lines, " "), uint(len(helpIndent))) {
					sb.WriteString(helpIndent + line + "\n")
				}
			case helpDefinition, helpExample:
				if blk.kind == helpDefinition {
					sb.WriteString(helpIndent + "Definition:\n")
				} else {
					sb.WriteString(helpIndent + "Example:\n")
				}
				for _, line := range blk.lines {
					sb.WriteString(helpBlockIndent + line + "\n")
				}
			}
		}
	}
	return sb.String()
}

func (help *Help) wrap(text string, indent uint) []string {
	width := uint(defaultTermWidth)
	if help.termWidth > indent+20 {
		width = help.termWidth - indent
	}
	return strings.Split(wordwrap.WrapString(text, width), "\n")
}

// parse reads the "### <command>" sections of the README. Text outside of them is the document intro.
func (help *Help) parse(md string) {
	var sec *helpSection
	var cur *helpBlock
	inFence := false

	endBlock := func() {
		if sec != nil && cur != nil && len(cur.lines) > 0 {
			if cur.kind == helpText && sec.summary == "" {
				sec.summary = firstSentence(strings.Join(cur.lines, " "))
			}
			sec.blocks = append(sec.blocks, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if inFence {
			if strings.HasPrefix(line, "```") {
				inFence = false
				endBlock()
			} else if cur != nil {
				cur.lines = append(cur.lines, line)
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "### "):
			endBlock()
			name := strings.TrimSpace(line[4:])
			sec = &helpSection{name: name}
			help.sections[name] = sec
			help.names = append(help.names, name)
		case strings.HasPrefix(line, "#"):
			endBlock()
			sec = nil
		case strings.HasPrefix(line, "```"):
			endBlock()
			inFence = true
			kind := helpExample
			if strings.TrimPrefix(line, "```") == "shell" {
				kind = helpDefinition
			}
			cur = &helpBlock{kind: kind}
		case line == "":
			endBlock()
		default:
			if cur == nil {
				cur = &helpBlock{kind: helpText}
			}
			cur.lines = append(cur.lines, markdownUnquote(strings.TrimSpace(line)))
		}
	}
	endBlock()
	slices.Sort(help.names)
}

func firstSentence(text string) string {
	if idx := strings.Index(text, ". "); idx > 0 {
		return text[:idx+1]
	}
	return text
}

func markdownUnquote(md string) string {
	md = strings.ReplaceAll(md, "\\", "")
	md = strings.ReplaceAll(md, "`", "")
	md = linkTargetPattern.ReplaceAllString(md, "]")
	return md
}
