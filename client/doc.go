// Package client talks to a file-backed dictionary served by "fbc serve"
// over TCP.
//
// Example:
//
//	c, err := client.Connect(client.WithPort(6969))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	err = c.Set("foo", []byte("bar"))
//	val, err := c.Get("foo")
package client
