package network

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a mock implementation of the Netlinker interface.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}

func (m *MockNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Addr), args.Error(1)
}

func (m *MockNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Route), args.Error(1)
}

func (m *MockNetlinker) RouteAdd(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) RouteDel(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

// MockCommandExecutor is a mock implementation of the CommandExecutor interface.
type MockCommandExecutor struct {
	mock.Mock
}

func (m *MockCommandExecutor) RunCommand(name string, arg ...string) (string, error) {
	callArgs := make([]interface{}, 0, len(arg)+1)
	callArgs = append(callArgs, name)
	for _, a := range arg {
		callArgs = append(callArgs, a)
	}
	args := m.Called(callArgs...)
	return args.String(0), args.Error(1)
}
