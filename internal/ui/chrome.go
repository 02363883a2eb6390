// Package ui models the page chrome (mobile navigation, scroll reveal,
// takeaway counter, chat widget and takeaway modal) as plain state machines.
package ui

import (
	"errors"
	"fmt"
)

// MaxRevealElements bounds how many elements a Reveal tracks.
const MaxRevealElements = 256

var (
	ErrUnknownItem     = errors.New("unknown takeaway item")
	ErrTooManyElements = errors.New("too many reveal elements")
)

// Nav is the collapsible navigation shown below the desktop breakpoint.
type Nav struct {
	Open       bool `json:"open"`
	Breakpoint int  `json:"breakpoint"`
}

// Toggle flips the menu.
func (n *Nav) Toggle() { n.Open = !n.Open }

func (n *Nav) mobile(width int) bool { return width < n.Breakpoint }

// LinkClicked closes the menu after navigation on narrow viewports.
func (n *Nav) LinkClicked(width int) {
	if n.mobile(width) {
		n.Open = false
	}
}

// OutsideClick closes an open menu on narrow viewports when the click landed
// outside both the menu and its toggle.
func (n *Nav) OutsideClick(width int, inside bool) {
	if !n.Open || !n.mobile(width) || inside {
		return
	}
	n.Open = false
}

// Resize closes the menu once the viewport reaches desktop width.
func (n *Nav) Resize(width int) {
	if !n.mobile(width) {
		n.Open = false
	}
}

// Reveal tracks one-way visibility of fade-in elements.
type Reveal struct {
	Threshold float64         `json:"threshold"`
	Visible   map[string]bool `json:"visible"`
}

// Observe records an intersection ratio for element id and reports whether
// the element is visible. Once visible it stays visible.
func (r *Reveal) Observe(id string, ratio float64) (bool, error) {
	if r.Visible[id] {
		return true, nil
	}
	if ratio < r.Threshold || ratio <= 0 {
		return false, nil
	}
	if len(r.Visible) >= MaxRevealElements {
		return false, ErrTooManyElements
	}
	if r.Visible == nil {
		r.Visible = make(map[string]bool)
	}
	r.Visible[id] = true
	return true, nil
}

// Order is the takeaway quantity counter.
type Order struct {
	UnitPrice  int            `json:"unit_price"`
	Items      []string       `json:"items"`
	Quantities map[string]int `json:"quantities"`
	TotalItems int            `json:"total_items"`
	TotalPrice int            `json:"total_price"`
}

// NewOrder creates an empty order over items.
func NewOrder(items []string, unitPrice int) Order {
	o := Order{
		UnitPrice:  unitPrice,
		Items:      append([]string(nil), items...),
		Quantities: make(map[string]int, len(items)),
	}
	for _, item := range items {
		o.Quantities[item] = 0
	}
	return o
}

// Increment adds one of item.
func (o *Order) Increment(item string) error {
	if _, ok := o.Quantities[item]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	o.Quantities[item]++
	o.recompute()
	return nil
}

// Decrement removes one of item, never going below zero.
func (o *Order) Decrement(item string) error {
	q, ok := o.Quantities[item]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	if q > 0 {
		o.Quantities[item] = q - 1
	}
	o.recompute()
	return nil
}

func (o *Order) recompute() {
	total := 0
	for _, q := range o.Quantities {
		total += q
	}
	o.TotalItems = total
	o.TotalPrice = total * o.UnitPrice
}

// Widget is the floating chat popup.
type Widget struct {
	Open bool `json:"open"`
}

func (w *Widget) Show()   { w.Open = true }
func (w *Widget) Hide()   { w.Open = false }
func (w *Widget) Toggle() { w.Open = !w.Open }

// OutsideClick closes the widget when the click landed outside its container.
func (w *Widget) OutsideClick(inside bool) {
	if w.Open && !inside {
		w.Open = false
	}
}

// Modal is the takeaway popup.
type Modal struct {
	Open bool `json:"open"`
}

func (m *Modal) Show() { m.Open = true }
func (m *Modal) Hide() { m.Open = false }

// BackdropClick closes the modal when the backdrop itself was clicked.
func (m *Modal) BackdropClick(onBackdrop bool) {
	if onBackdrop {
		m.Open = false
	}
}
