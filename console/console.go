// Package console is the interactive text menu used to edit searches and
// start polling.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	clearScreen = "\033[H\033[2J"
)

// Console reads answers from in and writes menus to out. Colors and screen
// clearing are only used when out is a terminal.
type Console struct {
	in    *bufio.Reader
	lines chan answer
	once  sync.Once
	ctx   context.Context
	out   io.Writer
	tty   bool
	dash  string
}

type answer struct {
	text string
	err  error
}

// New creates a console on the given streams
func New(in io.Reader, out io.Writer) *Console {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Console{
		in:    bufio.NewReader(in),
		lines: make(chan answer),
		ctx:   context.Background(),
		out:   out,
		tty:   tty,
		dash:  "#",
	}
}

// watch makes pending and later reads fail with ctx.Err() once ctx is done
func (c *Console) watch(ctx context.Context) {
	c.ctx = ctx
}

func (c *Console) color(code, s string) string {
	if !c.tty {
		return s
	}
	return code + s + colorReset
}

// Clear wipes the terminal
func (c *Console) Clear() {
	if c.tty {
		fmt.Fprint(c.out, clearScreen)
	}
}

// Println writes a plain line
func (c *Console) Println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

// Info prints an [INFO] line
func (c *Console) Info(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.color(colorYellow, "[INFO] "+fmt.Sprintf(format, args...)))
}

// Warning prints a [WARNING] line
func (c *Console) Warning(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.color(colorRed, "[WARNING] "+fmt.Sprintf(format, args...)))
}

// Notification prints a [NOTIFICATION] line
func (c *Console) Notification(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.color(colorGreen, "[NOTIFICATION] "+fmt.Sprintf(format, args...)))
}

// readLine waits for the next line. A read blocked on a terminal cannot be
// interrupted, so lines are read on their own goroutine.
func (c *Console) readLine() (string, error) {
	if err := c.ctx.Err(); err != nil {
		return "", err
	}
	c.once.Do(func() { go c.readLines() })

	select {
	case a, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return a.text, a.err
	case <-c.ctx.Done():
		return "", c.ctx.Err()
	}
}

func (c *Console) readLines() {
	defer close(c.lines)
	for {
		line, err := c.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			c.lines <- answer{err: err}
			return
		}
		c.lines <- answer{text: strings.TrimSpace(line)}
		if err != nil {
			return
		}
	}
}

// Prompt asks until valid accepts the answer. It fails only when input ends.
func (c *Console) Prompt(prompt string, valid func(string) bool) (string, error) {
	for {
		fmt.Fprint(c.out, c.color(colorGreen, prompt))
		answer, err := c.readLine()
		if err != nil {
			return "", err
		}
		if valid == nil || valid(answer) {
			return answer, nil
		}
		c.Warning("Invalid Response!")
	}
}

// YesNo asks a yes/no question; "(y/n) " is appended to prompt
func (c *Console) YesNo(prompt string) (bool, error) {
	answer, err := c.Prompt(prompt+"(y/n) ", func(s string) bool {
		switch s {
		case "y", "Y", "n", "N":
			return true
		}
		return false
	})
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "Y", nil
}

// Menu shows options numbered from 1 between dashed bars and returns the
// index of the chosen one.
func (c *Console) Menu(title string, options []string) (int, error) {
	return c.menu(title, options, 1)
}

// Choose lists items numbered from 0 and returns the chosen index
func (c *Console) Choose(title string, items []string) (int, error) {
	return c.menu(title, items, 0)
}

func (c *Console) menu(title string, options []string, first int) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("menu %q has no options", title)
	}

	entries := make([]string, len(options))
	width := len(title)
	for i, o := range options {
		entries[i] = fmt.Sprintf("%d: %s", i+first, strings.ReplaceAll(o, "\t", "    "))
		if len(entries[i]) > width {
			width = len(entries[i])
		}
	}

	bar := strings.Repeat(c.dash, width)
	fmt.Fprintln(c.out, bar)
	fmt.Fprintln(c.out, center(title, width))
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Options:")
	fmt.Fprintln(c.out)
	for _, e := range entries {
		fmt.Fprintln(c.out, e)
	}
	fmt.Fprintln(c.out, bar)

	answer, err := c.Prompt("Choice? ", func(s string) bool {
		n, err := strconv.Atoi(s)
		return err == nil && n >= first && n < len(options)+first
	})
	if err != nil {
		return -1, err
	}
	n, _ := strconv.Atoi(answer)
	return n - first, nil
}

// center pads text so it sits in the middle of width; an odd leftover space
// goes to the end.
func center(text string, width int) string {
	t := strings.TrimSpace(text)
	if len(t) >= width {
		return t
	}
	total := width - len(t)
	left := total / 2
	return strings.Repeat(" ", left) + t + strings.Repeat(" ", total-left)
}

// EditList runs the Create/Edit/Delete/Exit menu over a copy of items and
// returns the edited copy once the user exits.
func EditList[T any](
	c *Console,
	title string,
	items []T,
	show func(T) string,
	create func() (T, error),
	edit func(T) (T, error),
) ([]T, error) {
	out := make([]T, len(items))
	copy(out, items)

	for {
		c.Clear()
		if title != "" {
			fmt.Fprintln(c.out, title)
		}
		labels := make([]string, len(out))
		for i, item := range out {
			labels[i] = show(item)
			fmt.Fprintf(c.out, "%d: %s\n", i, labels[i])
		}

		choice, err := c.Menu("List Options", []string{"Create", "Edit", "Delete", "Exit"})
		if err != nil {
			return nil, err
		}

		switch choice {
		case 0:
			item, err := create()
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		case 1, 2:
			if len(out) == 0 {
				c.Warning("The list is empty.")
				continue
			}
			index, err := c.Choose("Which element would you like to choose?", labels)
			if err != nil {
				return nil, err
			}
			if choice == 2 {
				out = append(out[:index], out[index+1:]...)
				continue
			}
			item, err := edit(out[index])
			if err != nil {
				return nil, err
			}
			out[index] = item
		case 3:
			return out, nil
		}
	}
}
