// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ctfdump prints the streams and events of a CTF trace
// directory, mainly to dogfood the ctf package against real traces.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ctfreader/go-ctf/ctf"
	"github.com/ctfreader/go-ctf/ctfmeta"
)

func main() {
	var (
		flagInput = flag.String("i", "", "input CTF trace `directory`")
		flagLimit = flag.Int("n", 0, "stop after `count` events per stream (0 = no limit)")
	)
	flag.Parse()
	if *flagInput == "" || flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	tr, err := ctf.Open(*flagInput, ctfmeta.Parser{})
	if err != nil {
		log.Fatal(err)
	}
	defer tr.Close()

	fmt.Printf("trace %s\n", tr.Dir)
	if tr.Clock != nil {
		fmt.Printf("  clock: %s @ %d Hz\n", tr.Clock.Name, tr.Clock.FreqHz)
	}

	for _, fs := range tr.FileStreams() {
		cls := fs.Class()
		streamID := uint64(0)
		if cls != nil {
			streamID = cls.ID
		}
		fmt.Printf("stream %d: %d packets\n", streamID, fs.PacketCount())

		count := 0
		for {
			ev, err := fs.ReadEvent()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("  %s %s\n", ctf.FormatTimestamp(tr, ev.Timestamp, ctf.ClockOpts{}), ev.Class.Name)
			count++
			if *flagLimit > 0 && count >= *flagLimit {
				break
			}
		}
	}
}
