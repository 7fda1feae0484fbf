// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
包 cache 提供补全结果的多级缓存：本地 LRU + 可选 Redis。

补全原语被假定为无状态、无副作用，因此相同 prompt 的响应在 TTL 内
可以安全复用。缓存键为 prompt 的 sha256 十六进制摘要。

缓存是严格可选的：Redis 客户端为 nil 时仅用本地层，
本地层关闭且 Redis 为 nil 时等价于无缓存。
缓存故障只降级为未命中，从不向上传播错误。
*/
package cache
