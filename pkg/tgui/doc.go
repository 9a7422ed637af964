// Package tgui holds small Telegram UI helpers: HTML-safe text building,
// inline keyboard construction, and callback data packing.
//
// All rendered text targets ParseMode=HTML with link previews disabled,
// which is what every surface of this bot sends.
package tgui
