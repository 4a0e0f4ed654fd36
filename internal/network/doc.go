// Package network abstracts the OS interfaces the daemon depends on:
// netlink queries and route mutations, shell command execution for init
// system control, and link-layer information via ethtool.
//
// Every external effect goes through an interface (Netlinker,
// CommandExecutor) so the failover logic can be tested against mocks.
package network
