// Package crawlers 实现限定域名的并发爬取引擎
//
// # 组件
//
//   - Canonicalize / Classify: 链接规范化(解析相对地址、去掉片段)与页面/附件分类
//   - DomainPolicy: 主机名后缀匹配
//   - Frontier: 去重队列, 是"URL是否见过"的唯一来源
//   - HTTPFetcher: 单次GET, 区分超时、重定向过多、HTTP状态码和网络错误
//   - DecodeBody: 按声明编码解码, 失败时回退到宽松UTF-8
//   - ExtractLinks / Attachments: 从HTML中提取a[href]
//   - PageDiscovery / AttachmentDiscovery: 两种发现模式
//   - Engine / Monitor: worker池与终止判定
//
// 使用示例:
//
//	frontier := NewFrontier()
//	frontier.Seed(seeds)
//	budget := NewBudget(maxPages)
//	stats := &Stats{}
//	discovery := NewPageDiscovery(policy, frontier, budget, store, pageLog, stats)
//	engine := NewEngine(config, frontier, NewHTTPFetcher(opts), discovery, budget, stats, logger)
//	err := engine.Run(ctx)
//
// # 终止
//
// 以下任一条件满足时停止派发新URL: 页面预算用完; Frontier连续两个
// 监控周期为空且没有在途URL; ctx被取消。已在途的请求在自身超时内结束,
// 停止后出队的URL被丢弃。
//
// # 并发安全
//
// Frontier、Budget、Stats以及存储层的日志写入器都可以被多个worker同时使用。
package crawlers
