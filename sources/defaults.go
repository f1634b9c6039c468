package sources

import "cfup/config"

// Defaults is the built-in ordered lookup service list, used when the config
// file names none. Endpoints pin IPv4 where the service offers a v4 host.
func Defaults() []config.IPService {
	return []config.IPService{
		{Name: "api.ipify.org", URL: "https://api.ipify.org/"},
		{Name: "checkip.amazonaws.com", URL: "https://checkip.amazonaws.com"},
		{Name: "dnsomatic.com", URL: "https://myip.dnsomatic.com"},
		{Name: "icanhazip.com", URL: "https://ipv4.icanhazip.com/"},
		{Name: "ident.me", URL: "https://ident.me/"},
		{Name: "ifconfig.co", URL: "https://ipv4.ifconfig.co/ip"},
		{Name: "ifconfig.me", URL: "https://ipv4.ifconfig.me/ip"},
		{Name: "ipecho.net", URL: "https://ipv4.ipecho.net/plain"},
		{Name: "ipinfo.io", URL: "https://ipinfo.io/json", Format: "json"},
		{Name: "myexternalip.com", URL: "https://myexternalip.com/raw"},
		{Name: "whatismyip.akamai.com", URL: "https://whatismyip.akamai.com/"},
	}
}
