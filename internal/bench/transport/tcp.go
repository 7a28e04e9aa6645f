// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"fmt"
	"net"
	"strconv"
)

type tcpDevice struct{}

func newTCPDevice() (Device, error) {
	return tcpDevice{}, nil
}

func (tcpDevice) Name() string { return "tcp" }

func (tcpDevice) NewPair() (Pair, error) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, fmt.Errorf("transport: tcp listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return newStreamPair(ln, net.JoinHostPort(advertiseHost(), strconv.Itoa(port))), nil
}

func (tcpDevice) Close() error { return nil }

// advertiseHost picks the address peers should dial: the first global
// unicast interface address, falling back to loopback for single-host
// runs.
func advertiseHost() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		return ip.String()
	}
	return "127.0.0.1"
}
