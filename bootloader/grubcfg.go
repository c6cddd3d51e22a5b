// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Boothut Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package bootloader

import (
	"fmt"
	"os"
	"strings"

	"github.com/boothut/boothut/osutil"
)

// Family selects the boot parameter scheme of a menu entry.
type Family string

const (
	FamilyUbuntu  Family = "ubuntu"
	FamilyDebian  Family = "debian"
	FamilyArch    Family = "arch"
	FamilyWindows Family = "windows"
	FamilyCustom  Family = "custom"
)

// MenuEntry describes one loopback-boot menu entry for an ISO stored on
// the data partition.
type MenuEntry struct {
	Title   string
	ISOPath string
	Family  Family
	// Kernel, Initrd and Args are only used by FamilyCustom.
	Kernel string
	Initrd string
	Args   string
}

// settingsMarker separates the dynamic ISO entries from the fixed tail
// of the generated configuration. Entries are inserted before it.
const settingsMarker = `menuentry "System Settings"`

// GenerateConfig renders the initial grub configuration with an empty
// ISO menu.
func GenerateConfig(opts *Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Generated by boothut, do not edit. ISO entries are managed\n")
	fmt.Fprintf(&b, "# with \"boothut iso add\" and \"boothut iso remove\".\n")
	fmt.Fprintf(&b, "set timeout=%d\n", opts.Timeout)
	b.WriteString(`set default=0

insmod all_video
insmod gfxterm
insmod png
set gfxmode=auto
terminal_output gfxterm
`)
	if opts.Theme != "" {
		fmt.Fprintf(&b, "\nset theme=/grub/themes/%s/theme.txt\n", opts.Theme)
	}
	b.WriteString(`
set menu_color_normal=white/black
set menu_color_highlight=black/white

`)
	b.WriteString(settingsMarker + ` {
    insmod part_gpt
    insmod chain
    chainloader /EFI/BOOT/BOOTX64.EFI
}

menuentry "Reboot" {
    reboot
}

menuentry "Shutdown" {
    halt
}
`)
	return b.String()
}

// render produces the menuentry block for the entry.
func (e *MenuEntry) render() string {
	switch e.Family {
	case FamilyUbuntu:
		return fmt.Sprintf(`menuentry %q {
    set isofile=%q
    loopback loop $isofile
    linux (loop)/casper/vmlinuz boot=casper iso-scan/filename=$isofile quiet splash
    initrd (loop)/casper/initrd
}

`, e.Title, e.ISOPath)
	case FamilyDebian:
		return fmt.Sprintf(`menuentry %q {
    set isofile=%q
    loopback loop $isofile
    linux (loop)/live/vmlinuz boot=live findiso=$isofile quiet splash
    initrd (loop)/live/initrd.img
}

`, e.Title, e.ISOPath)
	case FamilyArch:
		return fmt.Sprintf(`menuentry %q {
    set isofile=%q
    loopback loop $isofile
    linux (loop)/arch/boot/x86_64/vmlinuz-linux img_dev=/dev/disk/by-label/USB_DATA img_loop=$isofile
    initrd (loop)/arch/boot/x86_64/initramfs-linux.img
}

`, e.Title, e.ISOPath)
	case FamilyWindows:
		// direct Windows ISO boot needs wimboot, which is out of scope
		return fmt.Sprintf(`menuentry %q {
    echo "Windows direct boot is not supported"
    sleep 5
}

`, e.Title)
	default:
		return fmt.Sprintf(`menuentry %q {
    set isofile=%q
    loopback loop $isofile
    linux (loop)%s %s
    initrd (loop)%s
}

`, e.Title, e.ISOPath, e.Kernel, e.Args, e.Initrd)
	}
}

// AddMenuEntry inserts the entry into the grub configuration at cfgPath,
// before the fixed settings tail. Adding an entry with an existing title
// is a no-op.
func AddMenuEntry(cfgPath string, e *MenuEntry) error {
	buf, err := os.ReadFile(cfgPath)
	if err != nil {
		return err
	}
	cfg := string(buf)
	if strings.Contains(cfg, fmt.Sprintf("menuentry %q", e.Title)) {
		return nil
	}
	pos := strings.Index(cfg, settingsMarker)
	if pos == -1 {
		return fmt.Errorf("cannot update %s: no settings entry marker found", cfgPath)
	}
	updated := cfg[:pos] + e.render() + cfg[pos:]
	return osutil.AtomicWriteFile(cfgPath, []byte(updated), 0644)
}

// RemoveMenuEntry removes the menu entry with the given title from the
// grub configuration at cfgPath. Removing a missing entry is a no-op.
func RemoveMenuEntry(cfgPath, title string) error {
	buf, err := os.ReadFile(cfgPath)
	if err != nil {
		return err
	}
	marker := fmt.Sprintf("menuentry %q", title)
	var out strings.Builder
	skip := false
	for _, line := range strings.SplitAfter(string(buf), "\n") {
		if !skip && strings.HasPrefix(strings.TrimSpace(line), marker) {
			skip = true
			continue
		}
		if skip {
			if strings.TrimSpace(line) == "}" {
				skip = false
			}
			continue
		}
		out.WriteString(line)
	}
	// collapse the blank line left behind by the removed block
	updated := strings.ReplaceAll(out.String(), "\n\n\n", "\n\n")
	return osutil.AtomicWriteFile(cfgPath, []byte(updated), 0644)
}

// themeText is the bundled default theme.
const themeText = `# boothut grub theme
title-text: "Boot Hut"
title-color: "#FFFFFF"
desktop-color: "#1a1a1a"

+ boot_menu {
    left = 15%
    width = 70%
    top = 30%
    height = 40%

    item_color = "#CCCCCC"
    selected_item_color = "#FFFFFF"
    item_height = 32
    item_padding = 8
    item_spacing = 4
}

+ progress_bar {
    id = "__timeout__"
    left = 15%
    width = 70%
    top = 75%
    height = 20
    text_color = "#FFFFFF"
}
`
