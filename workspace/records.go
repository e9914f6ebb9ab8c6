package workspace

// User is one workspace member as returned by the user listing.
// Unknown response fields are ignored.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DMChannel is one direct-message channel from the DM listing, keyed by
// the counterpart user's id.
type DMChannel struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

// ChannelNote is the value wrapper the API uses for channel purpose and
// topic fields.
type ChannelNote struct {
	Value string `json:"value"`
}

// Channel is one public or private conversation channel.
type Channel struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Purpose ChannelNote `json:"purpose"`
	Topic   ChannelNote `json:"topic"`
}
