// Copyright 2022 The OpenZipkin Authors
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

package zipkintracer

import (
	"encoding/binary"
	"net"
	"strconv"

	"github.com/openzipkin/zipkin-go"
	"github.com/openzipkin/zipkin-go/model"
)

// Endpoint is the network location and service name where an event was
// observed.
type Endpoint struct {
	ServiceName string
	IPv4        net.IP
	IPv6        net.IP
	Port        uint16
}

// NewEndpoint returns an endpoint for an already known address.
func NewEndpoint(serviceName string, ip net.IP, port uint16) *Endpoint {
	e := &Endpoint{ServiceName: serviceName, Port: port}
	if ip4 := ip.To4(); ip4 != nil {
		e.IPv4 = ip4
	} else if ip != nil {
		e.IPv6 = ip.To16()
	}
	return e
}

// MakeEndpoint takes the hostport and service name that represent this
// service and resolves them into an Endpoint. Host names are looked up; a
// host with only an IPv6 address yields an endpoint whose IPv4 encodes as 0.
//
// If the application does not listen for incoming requests use a zero port
// and/or address:
//
//	MakeEndpoint("192.168.1.12:0", "ServiceA")
//	MakeEndpoint("0.0.0.0:0", "ServiceB")
func MakeEndpoint(hostPort, serviceName string) (*Endpoint, error) {
	e, err := zipkin.NewEndpoint(serviceName, hostPort)
	if err != nil {
		return nil, err
	}
	ep := EndpointFromModel(e)
	if ep == nil {
		ep = &Endpoint{}
	}
	// zipkin-go lower cases the service name, we keep it as given.
	ep.ServiceName = serviceName
	return ep, nil
}

// EndpointFromModel converts a zipkin-go endpoint. A nil endpoint yields nil.
func EndpointFromModel(e *model.Endpoint) *Endpoint {
	if e == nil {
		return nil
	}
	return &Endpoint{
		ServiceName: e.ServiceName,
		IPv4:        e.IPv4.To4(),
		IPv6:        e.IPv6.To16(),
		Port:        e.Port,
	}
}

// Equal compares endpoints by value.
func (e *Endpoint) Equal(o *Endpoint) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.ServiceName == o.ServiceName &&
		e.Port == o.Port &&
		e.IPv4.Equal(o.IPv4) &&
		e.IPv6.Equal(o.IPv6)
}

// ipv4 returns the address as the signed integer zipkin expects: the four
// network order bytes read big endian. Endpoints without an IPv4 address
// return 0.
func (e *Endpoint) ipv4() int32 {
	if e == nil {
		return 0
	}
	ip4 := e.IPv4.To4()
	if ip4 == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(ip4))
}

func (e *Endpoint) String() string {
	if e == nil {
		return "<nil>"
	}
	host := "0.0.0.0"
	switch {
	case e.IPv4.To4() != nil:
		host = e.IPv4.String()
	case e.IPv6 != nil:
		host = e.IPv6.String()
	}
	return e.ServiceName + "@" + net.JoinHostPort(host, strconv.Itoa(int(e.Port)))
}
