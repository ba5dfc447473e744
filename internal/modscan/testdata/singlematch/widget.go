package module

func Widget() string { return "widget" }
