package metadata

import (
	"context"

	"github.com/mssola/useragent"

	"github.com/WilliamsPJ19/africa-map-tracker/pkg/requestcontext"
)

// Device is the coarse client description parsed from a User-Agent.
type Device struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// ParseDevice describes the client behind userAgent. An empty string yields
// the zero Device.
func ParseDevice(userAgent string) Device {
	if userAgent == "" {
		return Device{}
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	return Device{
		Browser: browser,
		OS:      ua.OS(),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}

// DeviceFromContext parses the User-Agent stored by ClientMetadata.
func DeviceFromContext(ctx context.Context) Device {
	return ParseDevice(requestcontext.UserAgent(ctx))
}

// LogAttrs returns the device as slog key/value pairs.
func (d Device) LogAttrs() []any {
	return []any{
		"browser", d.Browser,
		"os", d.OS,
		"mobile", d.Mobile,
	}
}
