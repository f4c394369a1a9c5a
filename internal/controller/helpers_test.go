package controller

import (
	"fmt"
	"strconv"
)

func pathf(format string, id uint) string {
	return fmt.Sprintf(format, id)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
