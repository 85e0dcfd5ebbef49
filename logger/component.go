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

package logger

import (
	"sort"
	"sync"
)

// Component is a named logger whose level can be set independently of the global level, e.g. to
// trace only the MAC layer of all devices.
type Component struct {
	Name  string
	level Level
	set   bool
}

var (
	components      = make(map[string]*Component, 16)
	componentsMutex sync.Mutex
)

// GetComponent gets (or creates) the component logger with the given name.
func GetComponent(name string) *Component {
	componentsMutex.Lock()
	defer componentsMutex.Unlock()

	c, ok := components[name]
	if !ok {
		c = &Component{Name: name}
		components[name] = c
	}
	return c
}

// EnableComponent sets the level of a single component, creating it if needed.
func EnableComponent(name string, level Level) {
	c := GetComponent(name)
	componentsMutex.Lock()
	c.level = level
	c.set = true
	componentsMutex.Unlock()
}

// EnableAllComponents sets the level of every known component.
func EnableAllComponents(level Level) {
	componentsMutex.Lock()
	defer componentsMutex.Unlock()
	for _, c := range components {
		c.level = level
		c.set = true
	}
}

// ComponentNames returns the sorted names of all known components.
func ComponentNames() []string {
	componentsMutex.Lock()
	defer componentsMutex.Unlock()
	names := make([]string, 0, len(components))
	for n := range components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Level returns the effective level: the component level if one was set, else the global level.
func (c *Component) Level() Level {
	if c.set && c.level > currentLevel {
		return c.level
	}
	return currentLevel
}

func (c *Component) IsEnabled(level Level) bool {
	return level <= c.Level()
}

func (c *Component) Logf(level Level, format string, args []interface{}) {
	if !c.IsEnabled(level) {
		return
	}
	logAlways(level, c.Name+": "+getMessage(format, args))
}

func (c *Component) Tracef(format string, args ...interface{}) {
	c.Logf(TraceLevel, format, args)
}

func (c *Component) Debugf(format string, args ...interface{}) {
	c.Logf(DebugLevel, format, args)
}

func (c *Component) Infof(format string, args ...interface{}) {
	c.Logf(InfoLevel, format, args)
}

func (c *Component) Warnf(format string, args ...interface{}) {
	c.Logf(WarnLevel, format, args)
}

func (c *Component) Errorf(format string, args ...interface{}) {
	c.Logf(ErrorLevel, format, args)
}
