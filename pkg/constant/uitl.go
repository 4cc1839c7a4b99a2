package constant

// ContainerEnv 构建容器内 shell 的环境变量，PATH 固定，不继承宿主机环境
func ContainerEnv(path, term string) []string {
	if path == "" {
		path = DefaultPath
	}
	if term == "" {
		term = DefaultTerm
	}
	return []string{
		"PATH=" + path,
		"TERM=" + term,
		"HOME=/",
	}
}
