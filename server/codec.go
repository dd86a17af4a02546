package server

import (
	"bufio"
	"encoding/gob"
	"net"
)

type codec struct {
	enc *gob.Encoder
	dec *gob.Decoder
}

func newCodec(conn net.Conn) *codec {
	return &codec{enc: gob.NewEncoder(conn), dec: gob.NewDecoder(bufio.NewReader(conn))}
}
