package module

import "strings"

func Default(name string) string {
	return "Hello, " + name + "!"
}

func RootFunctionShout(name string) string {
	return "HELLO, " + strings.ToUpper(name) + "!"
}
